package http

import (
	"context"
	"errors"
	"testing"
)

type sampleRequest struct {
	Ticker  string  `json:"ticker" validate:"required,min=1,max=5"`
	Mode    string  `json:"mode" default:"auto" validate:"oneof=auto arima ets"`
	Horizon int     `json:"horizon" default:"30" validate:"gte=1,lte=252"`
	Weight  float64 `json:"weight" validate:"gt=0"`
}

func TestValidateStructAppliesDefaults(t *testing.T) {
	req := &sampleRequest{Ticker: "AAPL", Weight: 1}
	if err := ValidateStruct(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Mode != "auto" || req.Horizon != 30 {
		t.Fatalf("defaults not applied: %+v", req)
	}
}

func TestValidationErrorsDescribeTags(t *testing.T) {
	req := &sampleRequest{Ticker: "TOOLONG", Mode: "garch", Horizon: 500}
	err := ValidateStruct(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	got := map[string]ValidationError{}
	for _, v := range ValidationErrors(err) {
		got[v.Code] = v
	}

	if v := got["ERR_MAX"]; v.Message != "Ticker must be at most 5 characters" || v.Params["max"] != "5" {
		t.Errorf("max: %+v", v)
	}
	if v := got["ERR_ONEOF"]; v.Message != "Mode must be one of: auto, arima, ets" {
		t.Errorf("oneof: %+v", v)
	} else if opts, _ := v.Params["options"].([]string); len(opts) != 3 {
		t.Errorf("oneof options: %+v", v.Params)
	}
	if v := got["ERR_LTE"]; v.Message != "Horizon must be less than or equal to 252" {
		t.Errorf("lte: %+v", v)
	}
	if v := got["ERR_GT"]; v.Params["value"] != "0" {
		t.Errorf("gt: %+v", v)
	}
}

func TestValidateTickerRule(t *testing.T) {
	type symbolRequest struct {
		Ticker string `json:"ticker" validate:"required,ticker"`
	}
	if err := ValidateStruct(context.Background(), &symbolRequest{Ticker: "brk.b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateStruct(context.Background(), &symbolRequest{Ticker: "../escape"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	got := ValidationErrors(err)
	if len(got) != 1 || got[0].Code != "ERR_TICKER" || got[0].Field != "Ticker" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestValidationErrorsUnknown(t *testing.T) {
	got := ValidationErrors(errors.New("malformed body"))
	if len(got) != 1 || got[0].Code != "ERR_UNKNOWN" || got[0].Message != "malformed body" {
		t.Fatalf("unexpected %+v", got)
	}
}
