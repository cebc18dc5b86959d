package orders

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/tealeg/xlsx"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// exportRow is one order flattened for spreadsheets.
type exportRow struct {
	ID              string  `csv:"id"`
	DisplayID       string  `csv:"display_id"`
	OrderDate       string  `csv:"order_date"`
	CustomerName    string  `csv:"customer_name"`
	PrimaryPhone    string  `csv:"primary_phone"`
	SecondaryPhone  string  `csv:"secondary_phone"`
	Governorate     string  `csv:"governorate"`
	District        string  `csv:"district"`
	DetailedAddress string  `csv:"detailed_address"`
	Items           string  `csv:"items"`
	Subtotal        float64 `csv:"subtotal"`
	DiscountCode    string  `csv:"discount_code"`
	DiscountAmount  float64 `csv:"discount_amount"`
	ShippingCost    float64 `csv:"shipping_cost"`
	Total           float64 `csv:"total"`
	Confirmed       bool    `csv:"confirmed"`
	Notes           string  `csv:"notes"`
}

var exportHeaders = []string{
	"ID", "Display ID", "Order Date", "Customer", "Primary Phone", "Secondary Phone",
	"Governorate", "District", "Address", "Items", "Subtotal", "Discount Code",
	"Discount", "Shipping", "Total", "Confirmed", "Notes",
}

func toRow(o Order, loc *time.Location) exportRow {
	lines := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, fmt.Sprintf("%s (%s) x%d", it.Name, it.Color, it.Quantity))
	}
	return exportRow{
		ID:              o.ID,
		DisplayID:       o.DisplayID,
		OrderDate:       o.OrderDate.In(loc).Format(exportTimeLayout),
		CustomerName:    o.CustomerName,
		PrimaryPhone:    o.PrimaryPhone,
		SecondaryPhone:  o.SecondaryPhone,
		Governorate:     o.Governorate,
		District:        o.District,
		DetailedAddress: o.DetailedAddress,
		Items:           strings.Join(lines, "; "),
		Subtotal:        o.Subtotal,
		DiscountCode:    o.DiscountCode,
		DiscountAmount:  o.DiscountAmount,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		Confirmed:       o.IsConfirmed,
		Notes:           o.Notes,
	}
}

// Export writes orders to w in the given format, rendering times in loc.
func Export(w io.Writer, format string, all []Order, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]exportRow, len(all))
	for i, o := range all {
		rows[i] = toRow(o, loc)
	}
	switch format {
	case FormatCSV:
		if err := gocsv.Marshal(rows, w); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		return nil
	case FormatXLSX, "":
		return writeXLSX(w, rows)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func writeXLSX(w io.Writer, rows []exportRow) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range []string{
			r.ID, r.DisplayID, r.OrderDate, r.CustomerName, r.PrimaryPhone, r.SecondaryPhone,
			r.Governorate, r.District, r.DetailedAddress, r.Items,
		} {
			row.AddCell().SetString(v)
		}
		row.AddCell().SetFloat(r.Subtotal)
		row.AddCell().SetString(r.DiscountCode)
		row.AddCell().SetFloat(r.DiscountAmount)
		row.AddCell().SetFloat(r.ShippingCost)
		row.AddCell().SetFloat(r.Total)
		row.AddCell().SetString(strconv.FormatBool(r.Confirmed))
		row.AddCell().SetString(r.Notes)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
