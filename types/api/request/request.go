// Package request contains api request types.
package request

// Register is the body of a registration request.
type Register struct {
	Username string `json:"username"`
}
