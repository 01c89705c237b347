// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package docs

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/tomtom215/recsync/internal/models"
)

func jsonKeys(v interface{}) []string {
	typ := reflect.TypeOf(v)
	keys := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

func TestSwagger_RecommendationMatchesModel(t *testing.T) {
	var doc struct {
		Definitions map[string]struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc); err != nil {
		t.Fatalf("swagger doc is not valid JSON: %v", err)
	}

	def, ok := doc.Definitions["models.Recommendation"]
	if !ok {
		t.Fatal("models.Recommendation definition missing")
	}
	got := make([]string, 0, len(def.Properties))
	for k := range def.Properties {
		got = append(got, k)
	}
	sort.Strings(got)

	want := jsonKeys(models.Recommendation{})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("swagger properties = %v, want %v", got, want)
	}
	if _, ok := def.Properties["item_id"]; !ok {
		t.Error("item id not documented as item_id")
	}
}
