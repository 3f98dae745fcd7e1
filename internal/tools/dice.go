package tools

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxDiceCount = 100
	maxDiceSides = 1000
)

var diceNotation = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// DiceTool rolls dice in standard tabletop notation.
type DiceTool struct {
	// roll returns a value in [1, sides]; swapped out in tests
	roll func(sides int) int
}

func NewDice() *DiceTool {
	return &DiceTool{roll: func(sides int) int { return rand.IntN(sides) + 1 }}
}

func (d *DiceTool) Name() string { return "roll_dice" }

func (d *DiceTool) Description() string {
	return "Rolls dice based on a standard notation string (e.g., \"2d6\", \"1d20+5\", \"3d6-2\") and returns the individual rolls and the total."
}

func (d *DiceTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"notation": map[string]interface{}{
				"type":        "string",
				"description": "The dice notation string, like \"2d6\" or \"1d20+5\".",
			},
		},
		"required": []string{"notation"},
	}
}

func (d *DiceTool) Execute(_ context.Context, args map[string]interface{}) (Result, error) {
	notation, _ := args["notation"].(string)
	count, sides, modifier, err := parseNotation(strings.TrimSpace(notation))
	if err != nil {
		return Result{}, err
	}

	rolls := make([]int, count)
	total := modifier
	parts := make([]string, count)
	for i := range rolls {
		rolls[i] = d.roll(sides)
		total += rolls[i]
		parts[i] = strconv.Itoa(rolls[i])
	}

	modifierStr := ""
	switch {
	case modifier > 0:
		modifierStr = fmt.Sprintf(" + %d", modifier)
	case modifier < 0:
		modifierStr = fmt.Sprintf(" - %d", -modifier)
	}
	return Result{Content: fmt.Sprintf("Rolled %s: [%s]%s = %d",
		notation, strings.Join(parts, ", "), modifierStr, total)}, nil
}

func parseNotation(notation string) (count, sides, modifier int, err error) {
	m := diceNotation.FindStringSubmatch(notation)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("%w: bad dice notation %q", ErrInvalidArgs, notation)
	}
	count, err = strconv.Atoi(m[1])
	if err != nil || count < 1 || count > maxDiceCount {
		return 0, 0, 0, fmt.Errorf("%w: dice count must be between 1 and %d", ErrInvalidArgs, maxDiceCount)
	}
	sides, err = strconv.Atoi(m[2])
	if err != nil || sides < 1 || sides > maxDiceSides {
		return 0, 0, 0, fmt.Errorf("%w: dice sides must be between 1 and %d", ErrInvalidArgs, maxDiceSides)
	}
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: bad modifier %q", ErrInvalidArgs, m[3])
		}
	}
	return count, sides, modifier, nil
}
