package ledger

import "errors"

// ErrBothChainsInvalid means neither candidate passed validation. An honest
// node never produces an invalid chain, so this indicates local corruption or
// a hostile peer and must be treated as fatal by the caller.
var ErrBothChainsInvalid = errors.New("local and remote chains are both invalid")

// ChooseChain picks the chain to keep between local and remote. The longer
// valid chain wins and ties go to local. Neither input is modified.
func ChooseChain(local, remote Chain) (Chain, error) {
	localValid := IsChainValid(local)
	remoteValid := IsChainValid(remote)

	switch {
	case localValid && remoteValid:
		if local.Len() >= remote.Len() {
			return local, nil
		}
		return remote, nil
	case remoteValid:
		return remote, nil
	case localValid:
		return local, nil
	default:
		return nil, ErrBothChainsInvalid
	}
}
