package domainerrors

import "net/http"

// Response is the boundary shape of an error. Only the transport layer
// renders it; the core never speaks HTTP.
type Response struct {
	HTTPStatus int    `json:"-"`
	Error      string `json:"error"`
	AppCode    int    `json:"code,omitempty"`
	Message    string `json:"error_description,omitempty"`
}

// ToResponse maps any error onto the boundary shape. Internal details are
// never exposed for internal, corrupt-record, or configuration errors.
func ToResponse(err error) Response {
	de, ok := As(err)
	if !ok {
		return Response{HTTPStatus: http.StatusInternalServerError, Error: string(CodeInternal), AppCode: AppInternal}
	}

	resp := Response{
		HTTPStatus: httpStatus(de.Code),
		Error:      string(de.Code),
		AppCode:    de.AppCode,
		Message:    de.Message,
	}
	if resp.AppCode == 0 {
		resp.AppCode = defaultAppCode(de.Code)
	}
	switch de.Code {
	case CodeInternal, CodeCorruptRecord, CodeConfiguration:
		resp.Message = ""
	}
	return resp
}

func httpStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeRemoteService:
		return http.StatusUnprocessableEntity
	case CodeStoreUnavailable:
		return http.StatusBadGateway
	case CodeRemoteUnavailable, CodeMailDelivery:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func defaultAppCode(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return AppInvalidParameters
	case CodeUnauthorized:
		return AppInvalidCredentials
	case CodeNotFound:
		return AppItemNotFound
	case CodeCorruptRecord:
		return AppInvalidNonJSONRecord
	case CodeStoreUnavailable:
		return AppStoreUnavailable
	case CodeRemoteUnavailable:
		return AppRemoteUnavailable
	case CodeRemoteService:
		return AppRemoteServiceRejected
	case CodeConfiguration:
		return AppInvalidConfiguration
	case CodeMailDelivery:
		return AppIncorrectEmailParams
	default:
		return AppInternal
	}
}
