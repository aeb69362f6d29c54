// Package selection implements the candidate ordering policies consulted by
// the engine manager before each generation attempt.
//
// A Strategy is a pure function from (registration-ordered candidates,
// health snapshot) to an ordered name list. Strategies never touch engine
// state and never mutate the snapshot, which keeps them isolated for unit
// testing. Unhealthy engines are always kept at the back of the list rather
// than filtered out: a manager with zero healthy engines should still try
// something instead of failing before the first attempt.
package selection
