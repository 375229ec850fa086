package sites

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const geohashPrecision = 9

// cleanText схлопывает пробельные символы, включая неразрывные.
// Узкий неразрывный пробел strings.Fields не считает пробелом.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u202f", " ")
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func text(sel *goquery.Selection) string {
	return cleanText(sel.Text())
}

// ownText - текст только непосредственных текстовых узлов элемента
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
			b.WriteByte(' ')
		}
	})
	return cleanText(b.String())
}

// textNodes возвращает непустые текстовые узлы элемента в порядке документа
func textNodes(sel *goquery.Selection) []string {
	var out []string
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := cleanText(c.Text()); t != "" {
					out = append(out, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(sel)
	return out
}

// convertUnitsToNum убирает единицы измерения и пробелы, запятая считается десятичным разделителем.
// Единицы перечисляются от длинных к коротким. false - значение не число.
func convertUnitsToNum(value string, units ...string) (float64, bool) {
	v := cleanText(value)
	for _, u := range units {
		v = strings.ReplaceAll(v, u, "")
	}
	v = strings.Join(strings.Fields(v), "")
	v = strings.ReplaceAll(v, ",", ".")
	if v == "" || v == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// setNum записывает числовое значение колонки src в колонку dst
func setNum(fields map[string]string, src, dst string, units ...string) (float64, bool) {
	f, ok := convertUnitsToNum(fields[src], units...)
	if ok {
		fields[dst] = formatNum(f)
	}
	return f, ok
}

// setRatio записывает частное, если оба значения известны и делитель не ноль
func setRatio(fields map[string]string, dst string, num, den float64, okNum, okDen bool) {
	if okNum && okDen && den != 0 {
		fields[dst] = strconv.FormatFloat(num/den, 'f', 2, 64)
	}
}

// setGeohash вычисляет geohash по широте и долготе
func setGeohash(fields map[string]string, latCol, lonCol string) {
	lat, okLat := convertUnitsToNum(fields[latCol])
	lon, okLon := convertUnitsToNum(fields[lonCol])
	if !okLat || !okLon || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return
	}
	fields[latCol] = formatNum(lat)
	fields[lonCol] = formatNum(lon)
	fields[geohashColumn] = geohash.EncodeWithPrecision(lat, lon, geohashPrecision)
}

// splitInto раскладывает значение по нескольким колонкам
func splitInto(fields map[string]string, src, sep string, dst ...string) {
	value := fields[src]
	if value == "" {
		return
	}
	parts := strings.SplitN(value, sep, len(dst))
	for i, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields[dst[i]] = p
		}
	}
}

var turkishMonths = map[string]time.Month{
	"ocak": time.January, "şubat": time.February, "mart": time.March,
	"nisan": time.April, "mayıs": time.May, "haziran": time.June,
	"temmuz": time.July, "ağustos": time.August, "eylül": time.September,
	"ekim": time.October, "kasım": time.November, "aralık": time.December,
}

// parseTurkishDate разбирает "12 Ağustos 2023" в ISO-дату
func parseTurkishDate(value string) (string, bool) {
	parts := strings.Fields(cleanText(value))
	if len(parts) != 3 {
		return "", false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	month, ok := turkishMonths[cases.Lower(language.Turkish).String(parts[1])]
	if !ok {
		return "", false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return "", false
	}
	return d.Format("2006-01-02"), true
}
