package game

import "errors"

var (
	ErrWrongPhase = errors.New("action not allowed in current phase")

	ErrNotYourTurn       = errors.New("not your turn")
	ErrSeatFinished      = errors.New("seat already finished")
	ErrEmptyPlay         = errors.New("no cards selected")
	ErrCardNotHeld       = errors.New("cards not in hand")
	ErrMixedRanks        = errors.New("cards must share one rank")
	ErrCountMismatch     = errors.New("card count must match the table")
	ErrNotLower          = errors.New("play must be strictly lower than the table")
	ErrOpeningPass       = errors.New("cannot pass on the opening turn")
	ErrLastSeatMustPlay  = errors.New("last active seat must play")
	ErrNotExchangeGiver  = errors.New("no cards owed by this seat")
	ErrExchangeCount     = errors.New("wrong number of cards to give back")
	ErrNotRevolutionSeat = errors.New("seat cannot declare revolution")
	ErrUnknownSeat       = errors.New("unknown seat")

	ErrStaleTimer = errors.New("turn timer no longer applies")

	ErrInvalidPlayerCount = errors.New("unsupported player count")
	ErrDealMismatch       = errors.New("deal does not exhaust the deck")
	ErrInvalidRules       = errors.New("invalid rules")
)

var rejections = []error{
	ErrWrongPhase,
	ErrNotYourTurn,
	ErrSeatFinished,
	ErrEmptyPlay,
	ErrCardNotHeld,
	ErrMixedRanks,
	ErrCountMismatch,
	ErrNotLower,
	ErrOpeningPass,
	ErrLastSeatMustPlay,
	ErrNotExchangeGiver,
	ErrExchangeCount,
	ErrNotRevolutionSeat,
	ErrUnknownSeat,
}

// IsRejection 判斷 err 是否為被拒絕的玩家操作，被拒絕的操作不會改動遊戲狀態
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvariant 判斷 err 是否代表回合無法建立、必須中止
func IsInvariant(err error) bool {
	return errors.Is(err, ErrDealMismatch) || errors.Is(err, ErrInvalidPlayerCount) || errors.Is(err, ErrInvalidRules)
}
