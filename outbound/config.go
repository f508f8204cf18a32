/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package outbound implements outbound-mode ESL: a server that FreeSWITCH
// dials into per call, handing each accepted socket to a user Application
// as a Session.
package outbound

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nabbar/eslswitch/duration"
	"github.com/nabbar/eslswitch/logger"
)

var validate = validator.New()

// ServerConfig describes how to bind and run an outbound ESL server.
type ServerConfig struct {
	Address string `validate:"required,hostname|ip"`
	// Ports is tried in order; the first port that binds wins. A
	// single-port deployment is simply a one-element slice.
	Ports           []int             `validate:"required,min=1,dive,gt=0,lte=65535"`
	MaxConnections  int               `validate:"required,gt=0"`
	ResponseTimeout duration.Duration `validate:"gte=0"`
	QueueSize       int               `validate:"gte=0"`
	LogFunc         logger.FuncLog    `validate:"-"`
}

// Validate checks the configuration against its struct tags.
func (c ServerConfig) Validate() error {
	return validate.Struct(c)
}

// DefaultResponseTimeout matches the original outbound session's default
// wait for a blocking application command to complete.
const DefaultResponseTimeout = duration.Duration(30 * time.Second)
