package sync

import "github.com/billrelay/backend/internal/models"

// serviceTypeToAccount maps a bill's service type onto the QuickBooks expense
// account it posts against. IDs belong to the connected company's chart of
// accounts.
var serviceTypeToAccount = map[models.ServiceType]string{
	models.ServiceTrash:          "1150040001",
	models.ServiceRollOff:        "1150040001",
	models.ServiceRollOffMonthly: "1150040001",
	models.ServiceRollOffTemp:    "1150040001",
	models.ServiceCompactor:      "1150040001",
	models.ServiceRecycling:      "1150040001",
	models.ServiceMisc:           "14", // Miscellaneous
}

// Fallback when a mapping is missing or the mapped account is unusable.
const defaultExpenseAccountID = "1150040001" // Trash Removal (Exp.):Trash (Exp.) [COGS]

// termByNetDays maps the record store's numeric terms field onto QuickBooks
// sales terms.
var termByNetDays = map[int]string{
	15: "2", // Net 15
	30: "3", // Net 30
	45: "4", // Net 45
	60: "5", // Net 60
}

const defaultTermID = "3" // Net 30

// validExpenseAccountTypes: a bill line may only post to these.
var validExpenseAccountTypes = map[string]bool{
	"Expense":            true,
	"Cost of Goods Sold": true,
}
