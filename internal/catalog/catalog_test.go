// Copyright (c) 2026 Heerawalla
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Record
	}{
		{
			name:  "simple rows",
			input: "name,price,metal\nAurora Ring,2400,platinum\nLotus Pendant,1800,gold\n",
			want: []Record{
				{"name": "Aurora Ring", "price": "2400", "metal": "platinum"},
				{"name": "Lotus Pendant", "price": "1800", "metal": "gold"},
			},
		},
		{
			name:  "quoted field with comma",
			input: "name,description\nHalo Band,\"Pavé band, full eternity\"\n",
			want: []Record{
				{"name": "Halo Band", "description": "Pavé band, full eternity"},
			},
		},
		{
			name:  "short row padded",
			input: "name,price,metal\nSolo Stud,950\n",
			want: []Record{
				{"name": "Solo Stud", "price": "950", "metal": ""},
			},
		},
		{
			name:  "blank rows dropped",
			input: "name,price\nRing,100\n,\n",
			want: []Record{
				{"name": "Ring", "price": "100"},
			},
		},
		{
			name:  "header only",
			input: "name,price\n",
			want:  nil,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseCSV: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d: %v", len(got), len(tt.want), got)
			}
			for i, rec := range got {
				for k, v := range tt.want[i] {
					if rec[k] != v {
						t.Errorf("record %d %q = %q, want %q", i, k, rec[k], v)
					}
				}
			}
		})
	}
}

func TestFeed(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("name,price\nAurora Ring,2400\n"))
	}))
	defer srv.Close()

	svc := New(srv.Client(), nil, map[string]string{"products": srv.URL})

	records, err := svc.Feed(context.Background(), "products")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "Aurora Ring" {
		t.Fatalf("records = %v", records)
	}
	if hits != 1 {
		t.Errorf("hits = %d", hits)
	}

	// No Redis configured: every call refetches.
	if _, err := svc.Feed(context.Background(), "products"); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want uncached refetch", hits)
	}
}

func TestFeedUnknown(t *testing.T) {
	svc := New(nil, nil, map[string]string{})
	_, err := svc.Feed(context.Background(), "products")
	if !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("Feed error = %v, want ErrUnknownFeed", err)
	}
}

func TestFeedUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	svc := New(srv.Client(), nil, map[string]string{"products": srv.URL})
	if _, err := svc.Feed(context.Background(), "products"); err == nil {
		t.Fatal("expected error for upstream 404")
	}
}
