package logging

import "log/slog"

// Attribute keys shared across pipeline and engine logging.
const (
	KeyCallID      = "call_id"
	KeyCustomerID  = "customer_id"
	KeyJobID       = "job_id"
	KeyStage       = "stage"
	KeyUserID      = "user_id"
	KeyConfidence  = "confidence"
	KeyMatchedBy   = "matched_by"
	KeyRequestID   = "request_id"
	KeyErrorDetail = "error"
)

// CallID builds the standard call identifier attribute.
func CallID(id int64) slog.Attr { return slog.Int64(KeyCallID, id) }

// CustomerID builds the standard customer identifier attribute.
func CustomerID(id int64) slog.Attr { return slog.Int64(KeyCustomerID, id) }

// JobID builds the standard job identifier attribute.
func JobID(id int64) slog.Attr { return slog.Int64(KeyJobID, id) }

// Stage builds the standard stage name attribute.
func Stage(name string) slog.Attr { return slog.String(KeyStage, name) }

// Error builds the standard error attribute, tolerating nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyErrorDetail, err.Error())
}
