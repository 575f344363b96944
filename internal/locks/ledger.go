package locks

// LedgerLocks serializes work per bet and per user. Callers always take the
// bet lock before any user lock, and user locks in sorted order, so two
// operations can never wait on each other in a cycle.
type LedgerLocks struct {
	bets  *KeyedMutex
	users *KeyedMutex
}

func NewLedgerLocks() *LedgerLocks {
	return &LedgerLocks{
		bets:  NewKeyedMutex(),
		users: NewKeyedMutex(),
	}
}

// Bet locks a single bet
func (l *LedgerLocks) Bet(betId string) func() {
	return l.bets.Lock(betId)
}

// Users locks a set of user wallets
func (l *LedgerLocks) Users(userIds ...string) func() {
	return l.users.LockAll(userIds...)
}
