package ticket

import "encoding/json"

var contractABI = map[string]json.RawMessage{
	"getValidTicketId": json.RawMessage(`[{"inputs":[{"internalType":"string","name":"bskyHandle","type":"string"}],"name":"getValidTicketId","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`),
	"verifyTicket":     json.RawMessage(`[{"inputs":[{"internalType":"uint256","name":"ticketId","type":"uint256"},{"internalType":"string","name":"bskyHandle","type":"string"}],"name":"verifyTicket","outputs":[{"internalType":"bool","name":"isValid","type":"bool"},{"internalType":"enum TicketSystem.TicketState","name":"state","type":"uint8"}],"stateMutability":"view","type":"function"}]`),
	"tickets":          json.RawMessage(`[{"inputs":[{"internalType":"uint256","name":"ticketId","type":"uint256"}],"name":"tickets","outputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"uint256","name":"ticketId","type":"uint256"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"enum TicketSystem.TicketState","name":"state","type":"uint8"},{"internalType":"string","name":"bskyHandle","type":"string"}],"stateMutability":"view","type":"function"}]`),
	"completeTicket":   json.RawMessage(`[{"inputs":[{"internalType":"uint256","name":"ticketId","type":"uint256"}],"name":"completeTicket","outputs":[],"stateMutability":"nonpayable","type":"function"}]`),
	"withdraw":         json.RawMessage(`[{"inputs":[],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}]`),
}

func abiFor(method string) json.RawMessage {
	return contractABI[method]
}
