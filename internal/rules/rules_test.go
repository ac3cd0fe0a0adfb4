package rules

import (
	"errors"
	"strings"
	"testing"

	"chessmatch/internal/game"
)

func TestApplyLegalMove(t *testing.T) {
	v, err := Apply(game.StartingBoard, "e2-e4")
	if err != nil {
		t.Fatalf("expected legal move, got %v", err)
	}
	if v.Piece != "P" {
		t.Fatalf("expected white pawn, got %q", v.Piece)
	}
	if !strings.Contains(v.Board, " b ") {
		t.Fatalf("black should be on turn after the move: %s", v.Board)
	}
	if v.Decisive {
		t.Fatalf("opening move ended the game: %+v", v)
	}
}

func TestApplyIllegalMove(t *testing.T) {
	if _, err := Apply(game.StartingBoard, "e2-e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestApplyFromEmptySquare(t *testing.T) {
	if _, err := Apply(game.StartingBoard, "e4-e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for empty square, got %v", err)
	}
}

func TestApplyMalformedMove(t *testing.T) {
	for _, move := range []string{"e0-e1", "e2e4", "i2-i4", "", "e2-e4-e5"} {
		if _, err := Apply(game.StartingBoard, move); !errors.Is(err, game.ErrInvalidRequest) {
			t.Fatalf("move %q: expected ErrInvalidRequest, got %v", move, err)
		}
	}
}

func TestApplyOutOfTurn(t *testing.T) {
	// Black piece while white is to move.
	if _, err := Apply(game.StartingBoard, "e7-e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove out of turn, got %v", err)
	}
}

func TestFoolsMateIsDecisive(t *testing.T) {
	board := game.StartingBoard
	for _, move := range []string{"f2-f3", "e7-e5", "g2-g4"} {
		v, err := Apply(board, move)
		if err != nil {
			t.Fatalf("move %s: %v", move, err)
		}
		if v.Decisive {
			t.Fatalf("game ended early on %s", move)
		}
		board = v.Board
	}
	v, err := Apply(board, "d8-h4")
	if err != nil {
		t.Fatalf("mating move: %v", err)
	}
	if !v.Decisive {
		t.Fatalf("expected checkmate to be decisive")
	}
	if v.Winner == nil || *v.Winner != game.Black {
		t.Fatalf("expected black to win, got %+v", v.Winner)
	}
}

func TestPromotionAutoQueens(t *testing.T) {
	const board = "8/P7/8/8/8/8/8/K1k5 w - - 0 1"
	v, err := Apply(board, "a7-a8")
	if err != nil {
		t.Fatalf("promotion: %v", err)
	}
	if !strings.Contains(v.Board, "Q") {
		t.Fatalf("expected a queen on the board: %s", v.Board)
	}
}
