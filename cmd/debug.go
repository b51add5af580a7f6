// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64 && debug

package cmd

import (
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/arl/statsviz"
)

// DebugAddress represents the listening address of the runtime profiling
// HTTP server
var DebugAddress = ":80"

func init() {
	statsviz.RegisterDefault()

	netHooks = append(netHooks, func() {
		go func() {
			log.Printf("starting debug server at %s", DebugAddress)

			if err := http.ListenAndServe(DebugAddress, nil); err != nil {
				log.Printf("debug server error, %v", err)
			}
		}()
	})
}
