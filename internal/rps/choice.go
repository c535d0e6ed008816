package rps

import (
	"fmt"
	"strconv"
	"strings"
)

// Choice is a hand sign. The zero value means "not revealed yet".
type Choice uint8

const (
	ChoiceNone Choice = iota
	ChoiceRock
	ChoicePaper
	ChoiceScissors
)

func (c Choice) Valid() bool {
	return c >= ChoiceRock && c <= ChoiceScissors
}

func (c Choice) String() string {
	switch c {
	case ChoiceNone:
		return "none"
	case ChoiceRock:
		return "rock"
	case ChoicePaper:
		return "paper"
	case ChoiceScissors:
		return "scissors"
	default:
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
}

// MarshalJSON keeps choices numeric; without it []Choice would encode as
// base64 like any other byte slice.
func (c Choice) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(c), 10)), nil
}

func (c *Choice) UnmarshalJSON(b []byte) error {
	s := string(b)
	if uq, err := strconv.Unquote(s); err == nil {
		parsed, err := ParseChoice(uq)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return fmt.Errorf("choice: %w", err)
	}
	*c = Choice(n)
	return nil
}

// ParseChoice accepts either the sign name or its numeric value (1..3).
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "r":
		return ChoiceRock, nil
	case "paper", "p":
		return ChoicePaper, nil
	case "scissors", "s":
		return ChoiceScissors, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return ChoiceNone, ErrInvalidChoice.Wrapf("%q", s)
	}
	c := Choice(n)
	if !c.Valid() {
		return ChoiceNone, ErrInvalidChoice.Wrapf("%d", n)
	}
	return c, nil
}
