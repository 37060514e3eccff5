package app

import "encoding/json"

// Result is what a run reports to the caller
type Result struct {
	Changed bool
	Failed  bool
	Msg     string
}

// Failure builds the result of a run that stopped on err
func Failure(err error) Result {
	return Result{Failed: true, Msg: err.Error()}
}

// MarshalJSON renders {"changed":bool} or {"failed":true,"msg":"..."}
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed {
		return json.Marshal(struct {
			Failed bool   `json:"failed"`
			Msg    string `json:"msg"`
		}{true, r.Msg})
	}
	return json.Marshal(struct {
		Changed bool `json:"changed"`
	}{r.Changed})
}
