package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	orderIDPrefix       = "ORD"
	orderIDRandomLength = 6
	base36Alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Байты от maxUnbiasedByte и выше отбрасываются, иначе первые символы алфавита выпадали бы чаще.
	maxUnbiasedByte = 256 - 256%len(base36Alphabet)
)

// OrderIDGenerator выдаёт внешний идентификатор заказа.
type OrderIDGenerator func(now time.Time) (string, error)

// NewOrderID формирует идентификатор вида ORD-<base36 ms>-<6 случайных base36 символов>.
func NewOrderID(now time.Time) (string, error) {
	return newOrderID(now, rand.Reader)
}

func newOrderID(now time.Time, entropy io.Reader) (string, error) {
	suffix := make([]byte, 0, orderIDRandomLength)
	buf := make([]byte, orderIDRandomLength)
	for len(suffix) < orderIDRandomLength {
		if _, err := io.ReadFull(entropy, buf[:orderIDRandomLength-len(suffix)]); err != nil {
			return "", fmt.Errorf("read order id entropy: %w", err)
		}
		for _, b := range buf[:orderIDRandomLength-len(suffix)] {
			if int(b) >= maxUnbiasedByte {
				continue
			}
			suffix = append(suffix, base36Alphabet[int(b)%len(base36Alphabet)])
		}
	}
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return orderIDPrefix + "-" + stamp + "-" + string(suffix), nil
}

// ValidOrderID грубо проверяет формат идентификатора до похода в хранилище.
func ValidOrderID(id string) bool {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != orderIDPrefix || parts[1] == "" || len(parts[2]) != orderIDRandomLength {
		return false
	}
	for _, r := range parts[1] + parts[2] {
		if !strings.ContainsRune(base36Alphabet, r) {
			return false
		}
	}
	return true
}
