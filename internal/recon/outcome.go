// Package recon is the data reconciliation and risk-aggregation engine:
// the positional label join, the history matcher, and the per-user
// aggregator. Every operation runs to completion on the calling
// goroutine and returns a structured outcome rather than propagating
// faults to the boundary.
package recon

import "fmt"

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// Outcome is the uniform result envelope every operation returns: a
// status discriminator, a human-readable message, and optional payload.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func Success(msg string, data any) Outcome {
	return Outcome{Status: StatusSuccess, Message: msg, Data: data}
}

func Successf(data any, format string, args ...any) Outcome {
	return Outcome{Status: StatusSuccess, Message: fmt.Sprintf(format, args...), Data: data}
}

func Warning(format string, args ...any) Outcome {
	return Outcome{Status: StatusWarning, Message: fmt.Sprintf(format, args...)}
}

func Error(format string, args ...any) Outcome {
	return Outcome{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

func Info(format string, args ...any) Outcome {
	return Outcome{Status: StatusInfo, Message: fmt.Sprintf(format, args...)}
}
