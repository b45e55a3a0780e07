package protocol

import "fmt"

// Error code carried by every response
type ErrorCode uint8

const (
	ErrorCode_OK            ErrorCode = 0x00
	ErrorCode_NotExist      ErrorCode = 0x01
	ErrorCode_InvalidMemory ErrorCode = 0x02
	ErrorCode_BadCommandLen ErrorCode = 0x80
	ErrorCode_BadParam      ErrorCode = 0x81
	ErrorCode_BadVersion    ErrorCode = 0x82
	ErrorCode_BadCommand    ErrorCode = 0x83
	ErrorCode_BadResponse   ErrorCode = 0x84
	ErrorCode_GeneralFail   ErrorCode = 0x8F
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorCode_OK:
		return "OK"
	case ErrorCode_NotExist:
		return "NOEXIST"
	case ErrorCode_InvalidMemory:
		return "MEMINVALID"
	case ErrorCode_BadCommandLen:
		return "BADCMDLEN"
	case ErrorCode_BadParam:
		return "BADPARAM"
	case ErrorCode_BadVersion:
		return "BADVERSION"
	case ErrorCode_BadCommand:
		return "BADCMD"
	case ErrorCode_BadResponse:
		return "BADRESPONSE"
	case ErrorCode_GeneralFail:
		return "GENFAIL"
	}

	return fmt.Sprintf("unknown(0x%02X)", uint8(e))
}

// Error reported by the emulator in a response
type ResponseError struct {
	Kind Kind
	Code ErrorCode
	ID   uint32
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%v: %v (request %v)", e.Kind, e.Code, FormatID(e.ID))
}

func (e *ResponseError) Unwrap() error {
	return ErrResponse
}

// Returns the error carried by a response, nil if the response reports success
func (r *Response) Err() error {
	if r.errorCode == ErrorCode_OK {
		return nil
	}

	return &ResponseError{Kind: r.kind, Code: r.errorCode, ID: r.id}
}
