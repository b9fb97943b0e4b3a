package httpapi

import (
	"encoding/json"

	"github.com/reloom/reloom-go/validation"
)

// Domain failure codes the backend reports through coded details.
const (
	CodeMaxImagesExceeded   = "MAX_IMAGES_EXCEEDED"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeCannotDeleteLastImg = "CANNOT_DELETE_LAST_IMAGE"
)

// codedMessages maps known domain codes to user-facing messages, used when
// the backend omits its own message.
var codedMessages = map[string]string{
	CodeMaxImagesExceeded:   "You have reached the image limit for this design.",
	CodeFileTooLarge:        "That file is too large to upload.",
	CodeCannotDeleteLastImg: "A design must keep at least one image.",
}

// Detail is the backend's structured error detail, decoded once at the HTTP
// boundary. It is one of MessageDetail, FieldErrorsDetail, or CodedDetail.
type Detail interface {
	isDetail()
}

// MessageDetail is a plain string detail.
type MessageDetail string

func (MessageDetail) isDetail() {}

// FieldErrorsDetail is a list of per-field validation errors.
type FieldErrorsDetail []validation.FieldError

func (FieldErrorsDetail) isDetail() {}

// CodedDetail is a domain-specific failure with a machine code.
type CodedDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (CodedDetail) isDetail() {}

// rawFieldError matches both {field,message} and FastAPI's {loc,msg} shapes.
type rawFieldError struct {
	Field   string   `json:"field"`
	Message string   `json:"message"`
	Loc     []string `json:"loc"`
	Msg     string   `json:"msg"`
}

// DecodeDetail extracts the `detail` convention from an error body.
// Returns nil when the body has no decodable detail.
func DecodeDetail(body []byte) Detail {
	if len(body) == 0 {
		return nil
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return nil
	}
	raw := envelope.Detail

	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return MessageDetail(msg)
	}

	var fields []rawFieldError
	if err := json.Unmarshal(raw, &fields); err == nil {
		out := make(FieldErrorsDetail, 0, len(fields))
		for _, f := range fields {
			fe := validation.FieldError{Field: f.Field, Message: f.Message}
			if fe.Message == "" {
				fe.Message = f.Msg
			}
			if fe.Field == "" && len(f.Loc) > 0 {
				fe.Field = f.Loc[len(f.Loc)-1]
			}
			out = append(out, fe)
		}
		if len(out) > 0 {
			return out
		}
		return nil
	}

	var coded CodedDetail
	if err := json.Unmarshal(raw, &coded); err == nil && coded.Code != "" {
		return coded
	}

	return nil
}

// detailMessage resolves a Detail to a user-facing string; "" means the
// caller should fall back to a generic message.
func detailMessage(d Detail) string {
	switch v := d.(type) {
	case MessageDetail:
		return string(v)
	case FieldErrorsDetail:
		if len(v) > 0 {
			return v[0].Message
		}
	case CodedDetail:
		if v.Message != "" {
			return v.Message
		}
		if mapped, ok := codedMessages[v.Code]; ok {
			return mapped
		}
	}
	return ""
}
