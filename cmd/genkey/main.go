package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet avoids characters that read ambiguously when a key is shared out
// loud (no 0/O, 1/l/I). Keys are case-insensitive.
const alphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const keyLength = 12

func main() {
	key := make([]byte, keyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			panic(err)
		}
		key[i] = alphabet[n.Int64()]
	}

	fmt.Printf("Room key: %s\n", key)
}
