package bridge

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	"nuha.dev/loctrack/internal/tracking"
)

// Dispatcher routes calls to handlers registered by method name. A handler is
// either func(ctx, *Res) error or func(ctx, *Req, *Res) error; Req is decoded
// from the call arguments and validated.
type Dispatcher struct {
	funcs     map[string]_function
	validator *validator.Validate
	log       log.Logger
}

type _function struct {
	reqType reflect.Type
	resType reflect.Type
	handler reflect.Value
	code    string
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.funcs = make(map[string]_function)
	d.validator = validator.New()
	d.log = log.DefaultLogger
	d.log.Context = log.NewContext(nil).Str("module", "dispatcher").Value()
	return d
}

// Add registers f under method. code labels every error f returns.
func (disp *Dispatcher) Add(method string, f interface{}, code string) {
	s := _function{}
	s.handler = reflect.ValueOf(f)
	if s.handler.Type().NumIn() == 2 {
		s.reqType = nil
		s.resType = s.handler.Type().In(1).Elem()
	} else {
		s.reqType = s.handler.Type().In(1).Elem()
		s.resType = s.handler.Type().In(2).Elem()
	}
	s.code = code
	disp.funcs[method] = s
}

func (disp *Dispatcher) Dispatch(ctx context.Context, call *Call) *Reply {
	reply := &Reply{ID: call.ID}
	if err := disp.validator.Struct(call); err != nil {
		reply.Error = &ErrorBody{Code: INVALID_CALL, Message: err.Error()}
		return reply
	}
	_func, ok := disp.funcs[call.Method]
	if !ok {
		disp.log.Debug().Str("method", call.Method).Msg("method not implemented")
		reply.NotImplemented = true
		return reply
	}

	response := reflect.New(_func.resType)
	var err_ref []reflect.Value
	if _func.reqType != nil {
		request := reflect.New(_func.reqType)
		if len(call.Arguments) != 0 && string(call.Arguments) != "null" {
			if err := json.Unmarshal(call.Arguments, request.Interface()); err != nil {
				reply.Error = &ErrorBody{Code: INVALID_CALL, Message: err.Error()}
				return reply
			}
		}
		if err := disp.validator.Struct(request.Interface()); err != nil {
			reply.Error = &ErrorBody{Code: INVALID_CALL, Message: err.Error()}
			return reply
		}
		err_ref = _func.handler.Call([]reflect.Value{reflect.ValueOf(ctx), request, response})
	} else {
		err_ref = _func.handler.Call([]reflect.Value{reflect.ValueOf(ctx), response})
	}
	if !err_ref[0].IsNil() {
		err := err_ref[0].Interface().(error)
		disp.log.Error().Err(err).Str("kind", tracking.ChannelError.String()).Str("method", call.Method).Str("code", _func.code).Msg("")
		reply.Error = &ErrorBody{Code: _func.code, Message: err.Error()}
		return reply
	}

	result, err := json.Marshal(response.Elem().Interface())
	if err != nil {
		disp.log.Error().Err(err).Str("method", call.Method).Msg("error encoding result")
		reply.Error = &ErrorBody{Code: _func.code, Message: err.Error()}
		return reply
	}
	reply.Result = result
	return reply
}
