package question

var builtin = []Question{
	{ID: "intro-1", Topic: "intro", Prompt: "What does DeFi stand for?", Choices: []string{"Decentralized Finance", "Default Finance", "Digital Fiat"}, Answer: "Decentralized Finance"},
	{ID: "intro-2", Topic: "intro", Prompt: "Which asset in the simulator is the stablecoin?", Choices: []string{"vETH", "vUSDC"}, Answer: "vUSDC"},
	{ID: "intro-3", Topic: "intro", Prompt: "What signs a transaction on behalf of a wallet?", Choices: []string{"Private key", "Public address", "Block hash"}, Answer: "Private key"},
	{ID: "lp-1", Topic: "liquidity-pools", Prompt: "A pool holds 10 vETH and 10000 vUSDC. What is the price of 1 vETH in vUSDC?", Kind: KindNumeric, Answer: "1000"},
	{ID: "lp-2", Topic: "liquidity-pools", Prompt: "A constant product pool holds x=100 and y=400. What is k?", Kind: KindNumeric, Answer: "40000"},
	{ID: "lp-3", Topic: "liquidity-pools", Prompt: "What do liquidity providers receive in exchange for deposits?", Choices: []string{"LP tokens", "Governance votes", "Gas refunds"}, Answer: "LP tokens"},
	{ID: "lp-4", Topic: "liquidity-pools", Prompt: "What is the loss from price divergence between pooled assets called?", Choices: []string{"Impermanent loss", "Slippage", "Front running"}, Answer: "Impermanent loss"},
	{ID: "stake-1", Topic: "staking", Prompt: "You stake 1000 tokens at a 5% yearly reward rate. How many tokens do you earn in one year?", Kind: KindNumeric, Answer: "50"},
	{ID: "stake-2", Topic: "staking", Prompt: "What can happen to a validator's stake after misbehaviour?", Choices: []string{"Slashing", "Minting", "Bridging"}, Answer: "Slashing"},
	{ID: "stake-3", Topic: "staking", Prompt: "Total staked grows from 1,000,000 to 1,200,000. By what percent did it grow?", Kind: KindNumeric, Answer: "20", Tolerance: 0.01},
	{ID: "stable-1", Topic: "stablecoins", Prompt: "What price does a USD stablecoin aim to hold?", Kind: KindNumeric, Answer: "1", Tolerance: 0.01},
	{ID: "stable-2", Topic: "stablecoins", Prompt: "vETH drops from 1000 to 800. What is the percentage drop?", Kind: KindNumeric, Answer: "20"},
	{ID: "stable-3", Topic: "stablecoins", Prompt: "Swapping a volatile asset for a stablecoin before a dip protects against what?", Choices: []string{"Price risk", "Smart contract risk", "Gas fees"}, Answer: "Price risk"},
}

// Builtin returns a copy of the default question pool.
func Builtin() []Question {
	out := make([]Question, len(builtin))
	for i, q := range builtin {
		out[i] = q.clone()
	}
	return out
}
