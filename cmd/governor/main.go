/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"runtime/debug"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"sigs.k8s.io/traffic-governance/cmd/governor/runner"
)

func main() {
	if err := run(); err != nil {
		ctrl.Log.Error(err, "Governor exited with error")
		os.Exit(1)
	}
}

func run() error {
	// Replaced by the configured logger once the flags are parsed.
	bootstrapLog := zap.New(zap.UseDevMode(true))
	ctrl.SetLogger(bootstrapLog)

	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			bootstrapLog.Error(err, "CRITICAL: Process panic recovered", "stack", string(debug.Stack()))
			os.Exit(1)
		}
	}()

	ctx := ctrl.SetupSignalHandler()
	return runner.NewRunner().Run(ctx)
}
