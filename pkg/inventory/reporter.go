/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package inventory

import (
	"context"
	"time"

	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/models"
)

const (
	severityError    = "Error"
	severityCritical = "Critical"

	internalFailure = "xyz.openbmc_project.bmc.pldm.InternalFailure"
)

// ErrorReporter publishes error log entries.
type ErrorReporter struct {
	pub    Publisher
	prefix string
	logger logger.Logger
}

// NewErrorReporter creates an ErrorReporter publishing under subjectPrefix.
func NewErrorReporter(pub Publisher, subjectPrefix string, log logger.Logger) (*ErrorReporter, error) {
	if pub == nil {
		return nil, ErrPublisherNil
	}

	return &ErrorReporter{pub: pub, prefix: subjectPrefix, logger: log}, nil
}

// ReportError publishes an error log entry of errorType with fields.
func (r *ErrorReporter) ReportError(ctx context.Context, errorType string, fields map[string]string) error {
	severity := severityError
	if errorType == internalFailure {
		severity = severityCritical
	}

	r.logger.Warn().Str("error_type", errorType).Interface("fields", fields).Msg("Reporting error log entry")

	return r.pub.Publish(ctx, r.prefix+".error", eventTypePrefix+"error", &models.ErrorEventData{
		ErrorType: errorType,
		Severity:  severity,
		Fields:    fields,
		Timestamp: time.Now(),
	})
}
