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

// Command atenopt lowers ATen graphs to buffer-level calls and lifts
// affine copy loops to AIR DMA transfers.
//
// Usage:
//
//	atenopt lower -i model.yaml                    # aten-to-std
//	atenopt air -i graph.yaml                      # affine-to-air
//	atenopt run -i a.yaml -i b.yaml --report out.json
//	atenopt run --passes aten-to-std,affine-to-air --workers 4 *.yaml
//	atenopt passes
//
// Inputs are module descriptions (see package modfile). Each module is
// transformed by one worker; the results are printed in input order.
// Set ATENOPT_DEBUG=1 for development logging.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
