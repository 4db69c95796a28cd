// Package tokens resolves well-known token symbols to Solana mint addresses.
package tokens

import (
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// addressThreshold is the length above which an input is treated as a mint address
const addressThreshold = 10

var mints = map[string]solana.PublicKey{
	"SOL":  solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
	"USDC": solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	"USDT": solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
	"JUP":  solana.MustPublicKeyFromBase58("JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"),
	"BONK": solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"),
	"WIF":  solana.MustPublicKeyFromBase58("EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"),
	"PYTH": solana.MustPublicKeyFromBase58("HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3"),
}

// Token is a known symbol and its mint
type Token struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint"`
}

// Resolve maps a symbol to its mint address. Inputs that already look like
// an address, and unknown symbols, are returned unchanged.
func Resolve(token string) string {
	if len(token) > addressThreshold {
		return token
	}
	if mint, ok := mints[strings.ToUpper(token)]; ok {
		return mint.String()
	}
	return token
}

// Symbol returns the known symbol for a mint, or the mint itself
func Symbol(mint string) string {
	for symbol, key := range mints {
		if key.String() == mint {
			return symbol
		}
	}
	return mint
}

// List returns the static table sorted by symbol
func List() []Token {
	list := make([]Token, 0, len(mints))
	for symbol, key := range mints {
		list = append(list, Token{Symbol: symbol, Mint: key.String()})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Symbol < list[j].Symbol
	})
	return list
}
