// Package rules is the move-legality checker consulted before a move
// reaches the session core. The core itself trusts its input; this
// package is the collaborator that earns that trust.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	chess "github.com/corentings/chess/v2"

	"chessmatch/internal/game"
)

// ErrIllegalMove flags a well-formed move the position does not allow.
var ErrIllegalMove = errors.New("illegal move")

var movePattern = regexp.MustCompile(`^[a-h][1-8]-[a-h][1-8]$`)

// Verdict is the outcome of applying one move to a board.
type Verdict struct {
	// Piece is the moved figure's FEN letter (uppercase white).
	Piece string
	// Board is the serialized position after the move.
	Board string
	// Decisive is set when the move ends the game by rule; Winner is
	// nil for a drawn result.
	Decisive bool
	Winner   *game.Color
}

// Apply validates a "e2-e4" style move against the serialized board
// and returns the resulting position. Malformed input is
// game.ErrInvalidRequest; a legal-looking move the position rejects is
// ErrIllegalMove.
func Apply(board, notation string) (*Verdict, error) {
	notation = strings.ToLower(strings.TrimSpace(notation))
	if !movePattern.MatchString(notation) {
		return nil, fmt.Errorf("%w: bad move %q", game.ErrInvalidRequest, notation)
	}

	fen, err := chess.FEN(board)
	if err != nil {
		return nil, fmt.Errorf("%w: bad board state", game.ErrInvalidRequest)
	}
	pos := chess.NewGame(fen)

	uci := notation[:2] + notation[3:]
	piece := pieceAt(pos, uci[:2])
	if piece == chess.NoPiece {
		return nil, fmt.Errorf("%w: no piece on %s", ErrIllegalMove, uci[:2])
	}
	if piece.Type() == chess.Pawn && (uci[3] == '1' || uci[3] == '8') {
		uci += "q" // auto-queen
	}

	if err := pos.PushNotationMove(uci, chess.UCINotation{}, nil); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, notation)
	}

	v := &Verdict{
		Piece: pieceLetter(piece),
		Board: pos.Position().String(),
	}
	switch pos.Outcome() {
	case chess.WhiteWon:
		w := game.White
		v.Decisive, v.Winner = true, &w
	case chess.BlackWon:
		b := game.Black
		v.Decisive, v.Winner = true, &b
	case chess.Draw:
		v.Decisive = true
	}
	return v, nil
}

func pieceAt(g *chess.Game, square string) chess.Piece {
	file := int(square[0] - 'a')
	rank := int(square[1] - '1')
	return g.Position().Board().Piece(chess.Square(rank*8 + file))
}

func pieceLetter(p chess.Piece) string {
	var letter string
	switch p.Type() {
	case chess.King:
		letter = "k"
	case chess.Queen:
		letter = "q"
	case chess.Rook:
		letter = "r"
	case chess.Bishop:
		letter = "b"
	case chess.Knight:
		letter = "n"
	default:
		letter = "p"
	}
	if p.Color() == chess.White {
		return strings.ToUpper(letter)
	}
	return letter
}
