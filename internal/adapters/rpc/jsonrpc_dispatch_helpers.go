package rpc

import "encoding/json"

func callWithoutParams(serviceErrCode int, call func() (any, error)) (any, *rpcError) {
	result, err := call()
	if err != nil {
		return nil, &rpcError{Code: serviceErrCode, Message: err.Error()}
	}
	return result, nil
}

func callWithSingleStringParam(rawParams json.RawMessage, serviceErrCode int, call func(string) (any, error)) (any, *rpcError) {
	param, err := decodeSingleStringParam(rawParams)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	}
	result, err := call(param)
	if err != nil {
		return nil, &rpcError{Code: serviceErrCode, Message: err.Error()}
	}
	return result, nil
}

func callWithTwoStringParams(rawParams json.RawMessage, serviceErrCode int, call func(string, string) (any, error)) (any, *rpcError) {
	a, b, err := decodeTwoStringParams(rawParams)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	}
	result, err := call(a, b)
	if err != nil {
		return nil, &rpcError{Code: serviceErrCode, Message: err.Error()}
	}
	return result, nil
}

func callWithThreeStringParams(rawParams json.RawMessage, serviceErrCode int, call func(string, string, string) (any, error)) (any, *rpcError) {
	a, b, c, err := decodeThreeStringParams(rawParams)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	}
	result, err := call(a, b, c)
	if err != nil {
		return nil, &rpcError{Code: serviceErrCode, Message: err.Error()}
	}
	return result, nil
}
