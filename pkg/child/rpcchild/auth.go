/*
 * Minio Cloud Storage, (C) 2016, 2017 Minio, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rpcchild

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v4"
)

// defaultInterNodeJWTExpiry mirrors the teacher's inter-node token
// lifetime: these tokens authenticate one afrheald to another, never a
// browser session, so they are issued long-lived and rotated by
// restarting the process with a new secret.
const defaultInterNodeJWTExpiry = 100 * 365 * 24 * time.Hour

var (
	errNoAuthToken    = errors.New("rpcchild: authorization token missing")
	errAuthentication = errors.New("rpcchild: authentication failed")
)

// nodeClaims is the subject of an inter-node token: the heal subsystem
// has no user identities, only a shared cluster secret, so the subject
// is fixed rather than an access key.
type nodeClaims struct {
	jwtgo.RegisteredClaims
}

const tokenSubject = "afrheald-node"

func signingMethod() jwtgo.SigningMethod { return jwtgo.SigningMethodHS512 }

// NewNodeToken issues a token peers present on every RPC call, signed
// with the shared cluster secret.
func NewNodeToken(secret string) (string, error) {
	claims := nodeClaims{
		jwtgo.RegisteredClaims{
			ExpiresAt: jwtgo.NewNumericDate(time.Now().Add(defaultInterNodeJWTExpiry)),
			Subject:   tokenSubject,
		},
	}
	tok := jwtgo.NewWithClaims(signingMethod(), claims)
	return tok.SignedString([]byte(secret))
}

func keyFunc(secret string) jwtgo.Keyfunc {
	return func(tok *jwtgo.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwtgo.SigningMethodHMAC); !ok {
			return nil, errAuthentication
		}
		return []byte(secret), nil
	}
}

// authenticateRequest validates the Bearer token on req against secret,
// the RPC-server-side analogue of the teacher's webRequestAuthenticate.
func authenticateRequest(req *http.Request, secret string) error {
	header := req.Header.Get("Authorization")
	if header == "" {
		return errNoAuthToken
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return errAuthentication
	}

	var claims nodeClaims
	tok, err := jwtgo.ParseWithClaims(tokenString, &claims, keyFunc(secret))
	if err != nil {
		return errAuthentication
	}
	if !tok.Valid || claims.Subject != tokenSubject {
		return errAuthentication
	}
	return nil
}
