package mq

import "errors"

var errBoom = errors.New("boom")
