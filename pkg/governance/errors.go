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

package governance

import (
	"errors"
	"fmt"

	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	errutil "sigs.k8s.io/traffic-governance/pkg/governance/util/error"
)

// ErrFlowLimited is returned by Invoke when the flow rule of the business key rejects the call.
var ErrFlowLimited = errors.New("call rejected by flow rule")

func errUnknownCategory(c rules.Category) error {
	return errutil.Error{Code: errutil.InvalidRule, Msg: fmt.Sprintf("unknown rule category %q", c)}
}
