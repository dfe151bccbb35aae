package model

// Token is an ERC20 input token of a pool. ID is the token address.
type Token struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
