package server

import "fmt"

// Every reply is one line: "OK", "OK <payload>" or "ERR <message>"

type Response struct {
	Msg   string
	Close bool
}

const (
	OK     = "OK"
	NoAuth = "not authenticated"
	NoPerm = "permission denied"
	NoDB   = "no open database"
)

func Respond(payload string) Response {
	if payload == "" {
		return Response{Msg: OK}
	}
	return Response{Msg: OK + " " + payload}
}

func Err(msg string) Response {
	return Response{Msg: "ERR " + msg}
}

func Errf(format string, args ...any) Response {
	return Err(fmt.Sprintf(format, args...))
}

func Usage(usage string) Response {
	return Err("usage: " + usage)
}
