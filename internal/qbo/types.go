package qbo

// Ref is the {value, name} reference shape QuickBooks uses to link entities.
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type Vendor struct {
	ID          string `json:"Id"`
	DisplayName string `json:"DisplayName"`
	Active      bool   `json:"Active"`
}

type Customer struct {
	ID          string   `json:"Id"`
	DisplayName string   `json:"DisplayName"`
	BillAddr    *Address `json:"BillAddr,omitempty"`
}

type Address struct {
	Line1 string `json:"Line1,omitempty"`
	City  string `json:"City,omitempty"`
	State string `json:"CountrySubDivisionCode,omitempty"`
	Zip   string `json:"PostalCode,omitempty"`
}

func (a *Address) String() string {
	if a == nil {
		return ""
	}
	out := a.Line1
	if a.City != "" {
		out += ", " + a.City
	}
	if a.State != "" {
		out += ", " + a.State
	}
	if a.Zip != "" {
		out += " " + a.Zip
	}
	return out
}

type Account struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	AccountType string `json:"AccountType"`
}

type Department struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type Term struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// Bill is the transaction payload submitted to QuickBooks.
type Bill struct {
	ID            string `json:"Id,omitempty"`
	DocNumber     string `json:"DocNumber"`
	VendorRef     Ref    `json:"VendorRef"`
	TxnDate       string `json:"TxnDate"`
	DueDate       string `json:"DueDate"`
	PrivateNote   string `json:"PrivateNote,omitempty"`
	DepartmentRef *Ref   `json:"DepartmentRef,omitempty"`
	SalesTermRef  *Ref   `json:"SalesTermRef,omitempty"`
	Line          []Line `json:"Line"`
}

// Line is a single AccountBasedExpenseLineDetail line.
type Line struct {
	DetailType  string        `json:"DetailType"`
	Amount      float64       `json:"Amount"`
	Description string        `json:"Description,omitempty"`
	Detail      ExpenseDetail `json:"AccountBasedExpenseLineDetail"`
}

type ExpenseDetail struct {
	AccountRef  Ref  `json:"AccountRef"`
	CustomerRef *Ref `json:"CustomerRef,omitempty"`
}
