package state

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/rlp"
)

// Account tracks the replay nonce of an actor address. Accounts are created
// lazily by the first successful transaction of an address.
type Account struct {
	Address string
	Nonce   uint64
}

type accountSt struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

func (a *Account) MarshalJSON() (dat []byte, err error) {
	o := accountSt{
		Address: a.Address,
		Nonce:   a.Nonce,
	}
	return json.Marshal(o)
}

func (a *Account) UnmarshalJSON(dat []byte) (err error) {
	var o accountSt
	err = json.Unmarshal(dat, &o)
	if err != nil {
		return
	}
	a.Address = o.Address
	a.Nonce = o.Nonce
	return
}

func (a *Account) Clone() *Account {
	n := *a
	return &n
}

func encodeAccount(a *Account) ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

func decodeAccount(dat []byte) (*Account, error) {
	a := new(Account)
	if err := rlp.DecodeBytes(dat, a); err != nil {
		return nil, err
	}
	return a, nil
}
