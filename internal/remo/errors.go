package remo

import "errors"

// ErrAuth indicates the API rejected the access token (any non-200 on the
// appliances listing during the auth check).
var ErrAuth = errors.New("access token rejected")

// ErrConnection indicates a transport or timeout failure reaching the API.
var ErrConnection = errors.New("cannot connect to api")
