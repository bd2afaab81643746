// Copyright 2025 go-highway Authors
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

package modfile

import (
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/ajroetker/go-atenair/transforms/pipeline"
)

// Report records what a batch run did to each input.
type Report struct {
	Passes  []string       `json:"passes"`
	Modules []ModuleReport `json:"modules"`
}

// ModuleReport is the entry for one input file.
type ModuleReport struct {
	Input  string            `json:"input"`
	Name   string            `json:"name,omitempty"`
	Passes []pipeline.Result `json:"results,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Failed reports whether any module failed.
func (r Report) Failed() bool {
	for _, m := range r.Modules {
		if m.Error != "" {
			return true
		}
	}
	return false
}

// Encode writes r as indented JSON.
func (r Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r), "failed to encode report")
}

// WriteFile writes r to path, or to stdout if path is "-".
func (r Report) WriteFile(path string) error {
	if path == "-" {
		return r.Encode(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create report")
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to write report")
}
