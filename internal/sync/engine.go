package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/billrelay/backend/internal/errs"
	"github.com/billrelay/backend/internal/models"
	"github.com/billrelay/backend/internal/qbo"
)

// BillStore is the record-store boundary: fetch one billing record, write its
// status and diagnostic detail back.
type BillStore interface {
	FetchBill(ctx context.Context, id string) (*models.Bill, error)
	SaveStatus(ctx context.Context, id string, status models.BillStatus, detail string) error
}

// ConnectionSource picks the default realm when a job does not name one.
type ConnectionSource interface {
	First(ctx context.Context) (*models.Connection, error)
}

// Engine converts one billing record into one QuickBooks bill. Every attempt
// ends with exactly one status write-back on the record: cleared to success or
// set to an issue state with detail.
type Engine struct {
	records  BillStore
	conns    ConnectionSource
	client   qbo.Client
	validate *validator.Validate
}

func NewEngine(records BillStore, conns ConnectionSource, client qbo.Client) *Engine {
	return &Engine{
		records:  records,
		conns:    conns,
		client:   client,
		validate: validator.New(),
	}
}

// Sync runs the full pipeline for a billing record. realmID may be empty, in
// which case the sole configured connection is used.
func (e *Engine) Sync(ctx context.Context, billID, realmID string) (err error) {
	bill, err := e.records.FetchBill(ctx, billID)
	if err != nil {
		if errs.KindOf(err) == "" {
			err = errs.Wrap(errs.KindNotFound, err, "bill %s not found", billID)
		}
		return err
	}

	// Single write-back path: whatever step fails below, the record's status
	// and detail are updated exactly once before the error propagates.
	defer func() {
		if wbErr := e.writeBack(ctx, bill, err); wbErr != nil {
			log.Printf("[SYNC] Status write-back failed for bill %s: %v", billID, wbErr)
			if err == nil {
				err = wbErr
			}
		}
	}()

	schema, err := e.mapBill(bill)
	if err != nil {
		return err
	}

	if realmID == "" {
		conn, connErr := e.conns.First(ctx)
		if connErr != nil {
			return connErr
		}
		realmID = conn.RealmID
	}

	vendor, err := e.resolveVendor(ctx, realmID, schema)
	if err != nil {
		return err
	}

	customer, err := e.resolveCustomer(ctx, realmID, schema)
	if err != nil {
		return err
	}

	account, err := e.resolveExpenseAccount(ctx, realmID, schema)
	if err != nil {
		return err
	}

	// Department resolution is best-effort; a bill without a location still
	// posts.
	department := e.resolveDepartment(ctx, realmID, schema)

	// Idempotency: a retry after a lost response must not create a second
	// bill with the same document number.
	existing, err := e.client.FindBillByDocNumber(ctx, realmID, schema.BillNumber)
	if err != nil {
		return errs.ClassifyAPIError(err)
	}
	if existing != nil {
		log.Printf("[SYNC] Bill %s already in QuickBooks as %s, skipping create", schema.BillNumber, existing.ID)
		return nil
	}

	payload := buildBillPayload(schema, vendor, customer, account, department)

	created, err := e.client.CreateBill(ctx, realmID, payload)
	if err != nil {
		return errs.ClassifyAPIError(err)
	}

	log.Printf("[SYNC] Bill %s created in QuickBooks as %s", schema.BillNumber, created.ID)
	return nil
}

// mapBill turns the raw record into the validated schema. Everything here
// fails before any QuickBooks call is made.
func (e *Engine) mapBill(bill *models.Bill) (*models.BillSchema, error) {
	if bill.HaulerNumber == "" {
		return nil, errs.Validation("bill %s has no Hauler associated", bill.ID)
	}
	if bill.CustomerAccount == "" {
		return nil, errs.Validation("bill %s has no Customer associated", bill.ID)
	}

	billDate, err := models.ParseBillDate(bill.BillDate)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "bill %s", bill.ID)
	}
	due, err := models.ParseDueDate(bill.Due)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "bill %s", bill.ID)
	}

	schema := &models.BillSchema{
		BillNumber:      bill.BillNumber,
		Status:          bill.Status,
		PDFLink:         bill.PDFLink,
		BillDate:        billDate,
		Due:             due,
		HaulerNumber:    bill.HaulerNumber,
		CustomerAccount: bill.CustomerAccount,
		ServiceType:     models.ServiceType(bill.ServiceType),
		ServiceAccount:  bill.ServiceAccount,
		Amount:          bill.Amount,
		Terms:           bill.Terms,
	}

	if err := e.validate.Struct(schema); err != nil {
		var fields []string
		for _, fe := range err.(validator.ValidationErrors) {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return nil, errs.Validation("bill %s failed validation: %s", bill.ID, strings.Join(fields, ", "))
	}
	if !schema.Amount.IsPositive() {
		return nil, errs.Validation("bill %s amount must be positive, got %s", bill.ID, schema.Amount)
	}

	return schema, nil
}

func (e *Engine) resolveVendor(ctx context.Context, realmID string, schema *models.BillSchema) (*qbo.Vendor, error) {
	vendors, err := e.client.FindVendor(ctx, realmID, schema.HaulerNumber)
	if err != nil {
		return nil, errs.ClassifyAPIError(err)
	}
	if len(vendors) == 0 {
		return nil, errs.NotFound("vendor (Hauler) %s not found in QuickBooks", schema.HaulerNumber)
	}
	return &vendors[0], nil
}

// resolveCustomer searches by the trailing fragment of the display name. The
// record store prefixes display names ("Acme Hauling - A-1042"); QuickBooks
// only knows the account fragment.
func (e *Engine) resolveCustomer(ctx context.Context, realmID string, schema *models.BillSchema) (*qbo.Customer, error) {
	fragment := schema.CustomerAccount
	if idx := strings.LastIndex(fragment, " - "); idx >= 0 {
		fragment = fragment[idx+len(" - "):]
	}

	customers, err := e.client.FindCustomersByDisplayName(ctx, realmID, fragment)
	if err != nil {
		return nil, errs.ClassifyAPIError(err)
	}
	if len(customers) == 0 {
		return nil, errs.NotFound("customer with display name %s not found in QuickBooks", schema.CustomerAccount)
	}
	return &customers[0], nil
}

// resolveExpenseAccount maps service type to an account, falling back to the
// default before failing. The resolved account must be expense-postable.
func (e *Engine) resolveExpenseAccount(ctx context.Context, realmID string, schema *models.BillSchema) (*qbo.Account, error) {
	accountID, ok := serviceTypeToAccount[schema.ServiceType]
	if !ok {
		log.Printf("[SYNC] No account mapping for service type %q, using default", schema.ServiceType)
		accountID = defaultExpenseAccountID
	}

	account, err := e.client.GetAccount(ctx, realmID, accountID)
	if err != nil {
		return nil, errs.ClassifyAPIError(err)
	}
	if account == nil || !validExpenseAccountTypes[account.AccountType] {
		if accountID == defaultExpenseAccountID {
			return nil, errs.Validation("default expense account %s is missing or not expense-postable", accountID)
		}
		account, err = e.client.GetAccount(ctx, realmID, defaultExpenseAccountID)
		if err != nil {
			return nil, errs.ClassifyAPIError(err)
		}
		if account == nil || !validExpenseAccountTypes[account.AccountType] {
			return nil, errs.Validation("no usable expense account for service type %q", schema.ServiceType)
		}
	}
	return account, nil
}

func (e *Engine) resolveDepartment(ctx context.Context, realmID string, schema *models.BillSchema) *qbo.Department {
	if schema.ServiceAccount == "" {
		return nil
	}
	departments, err := e.client.FindDepartments(ctx, realmID, schema.ServiceAccount)
	if err != nil || len(departments) == 0 {
		log.Printf("[SYNC] No department for service account %s, posting without location", schema.ServiceAccount)
		return nil
	}
	return &departments[0]
}

func buildBillPayload(schema *models.BillSchema, vendor *qbo.Vendor, customer *qbo.Customer, account *qbo.Account, department *qbo.Department) *qbo.Bill {
	amount, _ := schema.Amount.Float64()

	payload := &qbo.Bill{
		DocNumber:   schema.BillNumber,
		VendorRef:   qbo.Ref{Value: vendor.ID},
		TxnDate:     schema.BillDate.Format("2006-01-02"),
		DueDate:     schema.Due.Format("2006-01-02"),
		PrivateNote: schema.PDFLink,
		Line: []qbo.Line{{
			DetailType:  "AccountBasedExpenseLineDetail",
			Amount:      amount,
			Description: customer.BillAddr.String(),
			Detail: qbo.ExpenseDetail{
				AccountRef:  qbo.Ref{Value: account.ID, Name: account.Name},
				CustomerRef: &qbo.Ref{Value: customer.ID, Name: customer.DisplayName},
			},
		}},
	}

	if department != nil {
		payload.DepartmentRef = &qbo.Ref{Value: department.ID}
	}

	if termID, ok := termByNetDays[schema.Terms]; ok {
		payload.SalesTermRef = &qbo.Ref{Value: termID}
	} else if schema.Terms > 0 {
		payload.SalesTermRef = &qbo.Ref{Value: defaultTermID}
	}

	return payload
}

// writeBack records the attempt outcome on the source record.
func (e *Engine) writeBack(ctx context.Context, bill *models.Bill, syncErr error) error {
	if syncErr == nil {
		return e.records.SaveStatus(ctx, bill.ID, models.StatusInQB, "")
	}

	detail := StatusDetail{
		LoggedAt: time.Now().UTC(),
		FileLink: bill.PDFLink,
		Issue:    string(models.StatusIssueQB),
		Detail:   errs.DetailOf(syncErr),
		Actions:  []string{"Fix the bill record and re-trigger the sync.", "If the error persists, contact your system admin."},
	}
	return e.records.SaveStatus(ctx, bill.ID, models.StatusIssueQB, detail.String())
}
