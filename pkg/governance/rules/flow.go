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

package rules

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const DefaultLimitRefreshPeriod = time.Second

var FlowRequiredFields = []string{"limitForPeriod"}

// FlowRule caps the request rate of one business scenario.
type FlowRule struct {
	Base `json:",inline"`

	// LimitForPeriod is the number of permits granted per LimitRefreshPeriod.
	LimitForPeriod int `json:"limitForPeriod"`
	// LimitRefreshPeriod defaults to one second.
	LimitRefreshPeriod metav1.Duration `json:"limitRefreshPeriod,omitempty"`
}

var _ Rule = &FlowRule{}
var _ Defaulter = &FlowRule{}

func (r *FlowRule) Default() {
	r.LimitRefreshPeriod = metav1.Duration{Duration: DefaultLimitRefreshPeriod}
}

func (r *FlowRule) Validate() error {
	var errs error
	if r.LimitForPeriod < 1 {
		errs = multierr.Append(errs, fmt.Errorf("limitForPeriod must be at least 1, got %d", r.LimitForPeriod))
	}
	if r.LimitRefreshPeriod.Duration <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("limitRefreshPeriod must be positive, got %s", r.LimitRefreshPeriod.Duration))
	}
	return errs
}
