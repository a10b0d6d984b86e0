package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownToken is returned for symbols outside the known token enum.
var ErrUnknownToken = errors.New("unknown token")

// Token is a currency symbol of the token enum, e.g. "DOT" or "vDOT".
type Token string

// tokenIndex maps each symbol to its SCALE enum index.
var tokenIndex = map[Token]uint8{
	"ASG":   0,
	"aUSD":  1,
	"DOT":   2,
	"vDOT":  3,
	"KSM":   4,
	"vKSM":  5,
	"ETH":   6,
	"vETH":  7,
	"EOS":   8,
	"vEOS":  9,
	"IOST":  10,
	"vIOST": 11,
}

// DefaultVtokens is the token universe used when no explicit list is given.
var DefaultVtokens = []Token{"vDOT", "vKSM", "vETH", "vEOS", "vIOST"}

// Index returns the SCALE enum index of the token.
func (t Token) Index() (uint8, error) {
	idx, ok := tokenIndex[t]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, string(t))
	}
	return idx, nil
}

func (t Token) String() string {
	return string(t)
}

// ParseTokens validates symbols and returns them in input order.
func ParseTokens(inputs []string) ([]Token, error) {
	tokens := make([]Token, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		token := Token(input)
		if _, err := token.Index(); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// TokensOrDefault returns tokens, or a copy of DefaultVtokens when tokens is nil.
func TokensOrDefault(tokens []Token) []Token {
	if tokens == nil {
		return append([]Token(nil), DefaultVtokens...)
	}
	return tokens
}

// TokensKey encodes tokens into a comparable key preserving order. Each
// symbol is quoted, so distinct lists never share a key.
func TokensKey(tokens []Token) string {
	var b strings.Builder
	for _, token := range tokens {
		b.WriteString(strconv.Quote(string(token)))
	}
	return b.String()
}
