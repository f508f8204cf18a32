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

// Package inbound implements inbound-mode ESL: dialing FreeSWITCH's event
// socket, authenticating, and issuing commands over the resulting
// connection.
package inbound

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nabbar/eslswitch/duration"
	"github.com/nabbar/eslswitch/logger"
)

var validate = validator.New()

// Config describes how to dial and authenticate an inbound connection.
type Config struct {
	Host     string            `validate:"required,hostname_port|hostname|ip"`
	Port     int               `validate:"required,gt=0,lte=65535"`
	Password string            `validate:"required"`
	Timeout  duration.Duration `validate:"gte=0"`
	LogFunc  logger.FuncLog    `validate:"-"`
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// DefaultTimeout matches the original client's default dial timeout.
const DefaultTimeout = duration.Duration(5 * time.Second)
