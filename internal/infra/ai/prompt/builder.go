package prompt

import (
	"fmt"
	"strings"

	domai "github.com/bryanwahyu/solidity-audit/internal/domain/ai"
	"github.com/bryanwahyu/solidity-audit/internal/domain/audits"
)

// Token budgets per mode.
const (
	detailedMaxTokens = 1800
	beginnerMaxTokens = 1200
)

const detailedSystem = `You are a professional smart contract auditor with strong expertise in Solidity and blockchain security.`

const detailedInstructions = `Analyze the following Solidity smart contract and produce a concise, structured markdown report with three sections:
1. **Security Vulnerabilities** (enumerate issues, include SWC IDs if relevant)
2. **Gas Optimization Opportunities**
3. **Code Quality Improvements**

For every issue, include:
- A short description
- Why it matters
- A concrete fix or code snippet (when helpful)

Prefer modern best practices for Solidity ^0.8.x:
- Checks-Effects-Interactions
- call{value: ...}("") with boolean check (do not recommend .transfer as a blanket fix)
- Consider ReentrancyGuard from OpenZeppelin where applicable
- Emit events for critical state changes`

const beginnerSystem = `You are a helpful teacher explaining smart contract security to a beginner.`

const beginnerInstructions = `Review the following Solidity smart contract and explain its problems in clear, simple language:

Guidelines:
- Keep structure (headings / bullets) where it helps readability
- Avoid heavy jargon; define unavoidable terms briefly
- Be concise and friendly`

// Builder composes completion requests from contract source and mode.
// Pure string assembly — deterministic for identical inputs.
type Builder struct {
	maxContractBytes int64
}

func NewBuilder(maxContractBytes int64) *Builder {
	return &Builder{maxContractBytes: maxContractBytes}
}

// Build composes the outbound request. Contracts over the size bound fail
// with ErrPayloadTooLarge — never silently truncated.
func (b *Builder) Build(src *audits.ContractSource, mode audits.Mode) (domai.Request, error) {
	if strings.TrimSpace(src.Content) == "" {
		return domai.Request{}, audits.ErrEmptyInput
	}
	if b.maxContractBytes > 0 && src.Size > b.maxContractBytes {
		return domai.Request{}, fmt.Errorf("%w: %d bytes (max %d)", audits.ErrPayloadTooLarge, src.Size, b.maxContractBytes)
	}

	req := domai.Request{
		ContractName: src.Name,
		CodeHash:     src.Hash,
		Mode:         string(mode),
	}
	switch mode {
	case audits.ModeBeginner:
		req.System = beginnerSystem
		req.User = fmt.Sprintf("%s\n\nSmart Contract:\n```solidity\n%s\n```", beginnerInstructions, src.Content)
		req.MaxTokens = beginnerMaxTokens
	default:
		req.System = detailedSystem
		req.User = fmt.Sprintf("%s\n\nSmart Contract:\n```solidity\n%s\n```", detailedInstructions, src.Content)
		req.MaxTokens = detailedMaxTokens
	}
	return req, nil
}
