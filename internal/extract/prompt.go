package extract

import "strings"

// BuildPrompt renders the extraction instruction for a document's text.
// Deterministic and side-effect free: the same text always yields the same
// prompt, including for empty input (the model then returns empty arrays).
func BuildPrompt(documentText string) string {
	var b strings.Builder

	b.WriteString("You are a financial data extraction expert. Analyze the following bank statement ")
	b.WriteString("or financial document text and extract structured data.\n\n")
	b.WriteString("CRITICAL: Return data in the EXACT structure shown below.\n\n")

	b.WriteString("REQUIRED JSON STRUCTURE:\n")
	b.WriteString(`{
  "bankAccounts": [
    {
      "accountType": "Savings" | "Current" | "Credit",
      "accountNumberMasked": "XXXX1234",
      "ifsc": "BANK0001234",
      "currentBalance": 50000,
      "currency": "INR",
      "bankName": "State Bank"
    }
  ],
  "transactions": [
    {
      "date": "2024-01-15",
      "amount": 5000,
      "type": "debit" | "credit",
      "description": "Grocery Shopping at BigBazaar",
      "category": "Food" | "Transport" | "Shopping" | "Entertainment" | "Bills" | "Healthcare" | "Investment" | "Salary" | "Other"
    }
  ],
  "holdings": [
    {
      "instrumentName": "Reliance Industries",
      "instrumentType": "Equity" | "MF",
      "category": "Stock" | "Mutual Fund" | "SIP",
      "quantity": 10,
      "averageBuyPrice": 2450.50,
      "currentPrice": 2580.75,
      "currency": "INR"
    }
  ]
}`)
	b.WriteString("\n\nEXTRACTION RULES:\n")
	b.WriteString("1. TRANSACTIONS:\n")
	b.WriteString("   - date: YYYY-MM-DD format\n")
	b.WriteString("   - amount: Must be a positive number (absolute value)\n")
	b.WriteString("   - type: ONLY \"debit\" or \"credit\"\n")
	b.WriteString("   - description: Clear transaction description\n")
	b.WriteString("   - category: Choose from: Food, Transport, Shopping, Entertainment, Bills, Healthcare, Investment, Salary, Other\n")
	b.WriteString("   - Categorize based on merchant/description (e.g., Swiggy -> Food, Uber -> Transport, Amazon -> Shopping)\n")
	b.WriteString("2. HOLDINGS (Stocks/Mutual Funds/SIPs):\n")
	b.WriteString("   - instrumentName: Full name (e.g., \"Reliance Industries\", \"HDFC Top 100 Fund\")\n")
	b.WriteString("   - instrumentType: \"Equity\" for stocks, \"MF\" for mutual funds/SIPs\n")
	b.WriteString("   - category: \"Stock\" for equity shares, \"Mutual Fund\" for MF, \"SIP\" for SIP investments\n")
	b.WriteString("   - quantity: Number of shares/units\n")
	b.WriteString("   - averageBuyPrice: Average purchase price per unit (MUST be a positive number)\n")
	b.WriteString("   - currentPrice: Current market price (if not available, use averageBuyPrice)\n")
	b.WriteString("   - currency: Default \"INR\"\n")
	b.WriteString("3. BANK ACCOUNTS:\n")
	b.WriteString("   - accountType: \"Savings\", \"Current\", or \"Credit\"\n")
	b.WriteString("   - accountNumberMasked: Last 4 digits with XXXX prefix (e.g., \"XXXX1234\")\n")
	b.WriteString("   - ifsc: IFSC code if available\n")
	b.WriteString("   - currentBalance: Current balance amount\n")
	b.WriteString("   - bankName: Bank name if available\n")
	b.WriteString("4. CATEGORY INFERENCE:\n")
	b.WriteString("   - If holding has \"SIP\" in the name -> category: \"SIP\"\n")
	b.WriteString("   - If instrumentType is \"Equity\" -> category: \"Stock\"\n")
	b.WriteString("   - If instrumentType is \"MF\" and no SIP mention -> category: \"Mutual Fund\"\n")
	b.WriteString("5. DATA QUALITY:\n")
	b.WriteString("   - All prices must be positive numbers > 0\n")
	b.WriteString("   - Dates must be valid and parseable\n")
	b.WriteString("   - Remove any entries with missing critical fields (amount, date, instrumentName)\n")
	b.WriteString("\nDOCUMENT TEXT TO ANALYZE:\n")
	b.WriteString(documentText)
	b.WriteString("\n\nRETURN ONLY THE JSON OBJECT - NO MARKDOWN, NO EXPLANATIONS, NO CODE BLOCKS.\n")

	return b.String()
}
