// Package whatsapp builds the Arabic order summary sent to the shop owner and
// the wa.me link that opens it in WhatsApp.
package whatsapp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/imrishuroy/bagshop/internal/cart"
)

const (
	shopName = "SALMA BAG"
	linkBase = "https://wa.me/"
)

var cairo = loadCairo()

// Location is the shop's time zone.
func Location() *time.Location { return cairo }

func loadCairo() *time.Location {
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		return time.FixedZone("EET", 2*60*60)
	}
	return loc
}

var arabicMonths = [...]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

// Summary is what the order message needs to know.
type Summary struct {
	OrderID         string
	OrderDate       time.Time
	CustomerName    string
	PrimaryPhone    string
	SecondaryPhone  string
	Governorate     string
	District        string
	DetailedAddress string
	Items           []cart.Item
	Subtotal        float64
	DiscountCode    string
	DiscountAmount  float64
	ShippingCost    float64
	Total           float64
}

// FormatDate renders t in Cairo time the way Egyptian Arabic locales do,
// e.g. "١٩ أكتوبر ٢٠٢٦ في ٠٣:٤٥ م".
func FormatDate(t time.Time) string {
	t = t.In(cairo)
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	period := "ص"
	if t.Hour() >= 12 {
		period = "م"
	}
	s := fmt.Sprintf("%d %s %d في %02d:%02d %s",
		t.Day(), arabicMonths[t.Month()-1], t.Year(), hour, t.Minute(), period)
	return arabicDigits.Replace(s)
}

func money(v float64) string {
	return "EG " + strconv.FormatFloat(v, 'f', 2, 64)
}

// Format builds the order message.
func Format(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🛍️ *طلب جديد من %s* 🛍️\n\n", shopName)

	b.WriteString("📋 *تفاصيل الطلب:*\n")
	fmt.Fprintf(&b, "رقم الطلب: #%s\n", s.OrderID)
	fmt.Fprintf(&b, "تاريخ الطلب: %s\n\n", FormatDate(s.OrderDate))

	b.WriteString("👤 *بيانات العميل:*\n")
	fmt.Fprintf(&b, "الاسم: %s\n", s.CustomerName)
	fmt.Fprintf(&b, "الهاتف الأساسي: %s\n", s.PrimaryPhone)
	if s.SecondaryPhone != "" {
		fmt.Fprintf(&b, "هاتف إضافي: %s\n", s.SecondaryPhone)
	}
	b.WriteString("\n")

	b.WriteString("📍 *عنوان التوصيل:*\n")
	fmt.Fprintf(&b, "المحافظة: %s\n", s.Governorate)
	if s.District != "" {
		fmt.Fprintf(&b, "المنطقة: %s\n", s.District)
	}
	fmt.Fprintf(&b, "العنوان التفصيلي: %s\n\n", s.DetailedAddress)

	b.WriteString("🛒 *المنتجات المطلوبة:*\n")
	for i, it := range s.Items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   اللون: %s\n   الكمية: %d\n   السعر: %s",
			i+1, it.Name, it.Color, it.Quantity, money(it.LineTotal()))
	}
	b.WriteString("\n\n")

	b.WriteString("💰 *ملخص الطلب:*")
	if s.Subtotal != 0 {
		fmt.Fprintf(&b, "\nالمجموع الفرعي: %s", money(s.Subtotal))
	}
	if s.DiscountCode != "" {
		fmt.Fprintf(&b, "\n🎟️ كود الخصم: %s", s.DiscountCode)
	}
	if s.DiscountAmount != 0 {
		fmt.Fprintf(&b, "\n💸 قيمة الخصم: -%s", money(s.DiscountAmount))
	}
	fmt.Fprintf(&b, "\n+ سعر التوصيل: %s", money(s.ShippingCost))
	fmt.Fprintf(&b, "\n= *الإجمالي الكلي: %s*", money(s.Total))
	if s.DiscountAmount != 0 {
		fmt.Fprintf(&b, "\n✨ وفر العميل: %s!", money(s.DiscountAmount))
	}

	b.WriteString("\n\nسنتواصل معك لتأكيد الطلب قريبًا.\n\n")
	fmt.Fprintf(&b, "*شكراً لك على استخدام %s* 💝", shopName)
	return b.String()
}

// uriComponent undoes the QueryEscape differences from encodeURIComponent,
// which keeps !*'() and writes spaces as %20.
var uriComponent = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%2A", "*",
	"%27", "'",
	"%28", "(",
	"%29", ")",
)

func encodeText(s string) string {
	return uriComponent.Replace(url.QueryEscape(s))
}

// Link returns the wa.me deep link that opens a chat with phone prefilled
// with text.
func Link(phone, text string) string {
	return linkBase + phone + "?text=" + encodeText(text)
}
