package tools

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func rollArgs(notation string) map[string]interface{} {
	return map[string]interface{}{"notation": notation}
}

func TestRollDiceDeterministicFormat(t *testing.T) {
	d := NewDice()
	d.roll = func(sides int) int { return sides }

	cases := []struct {
		notation string
		want     string
	}{
		{"2d6", "Rolled 2d6: [6, 6] = 12"},
		{"2d6+1", "Rolled 2d6+1: [6, 6] + 1 = 13"},
		{"2d6-3", "Rolled 2d6-3: [6, 6] - 3 = 9"},
		{"1d20+5", "Rolled 1d20+5: [20] + 5 = 25"},
	}
	for _, c := range cases {
		res, err := d.Execute(context.Background(), rollArgs(c.notation))
		if err != nil {
			t.Fatalf("%s: %v", c.notation, err)
		}
		if res.Content != c.want {
			t.Fatalf("%s: got %q, want %q", c.notation, res.Content, c.want)
		}
	}
}

func TestRollDiceTotalsStayInRange(t *testing.T) {
	d := NewDice()
	for i := 0; i < 200; i++ {
		res, err := d.Execute(context.Background(), rollArgs("3d6+2"))
		if err != nil {
			t.Fatalf("roll: %v", err)
		}
		idx := strings.LastIndex(res.Content, "= ")
		if idx < 0 {
			t.Fatalf("no total in %q", res.Content)
		}
		total, err := strconv.Atoi(res.Content[idx+2:])
		if err != nil {
			t.Fatalf("bad total in %q: %v", res.Content, err)
		}
		if total < 5 || total > 20 {
			t.Fatalf("3d6+2 produced %d, outside [5,20]", total)
		}
	}
}

func TestRollDiceRejectsMalformedNotation(t *testing.T) {
	d := NewDice()
	for _, notation := range []string{
		"", "d20", "0d6", "3d0", "101d6", "1d1001", "-1d6",
		"3d6+2x", "two d six", "3d", "d",
	} {
		_, err := d.Execute(context.Background(), rollArgs(notation))
		if !errors.Is(err, ErrInvalidArgs) {
			t.Fatalf("%q: want ErrInvalidArgs, got %v", notation, err)
		}
	}
}
