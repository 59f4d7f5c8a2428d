package usecase

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberSuffixChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderNumber は "ORD-<ミリ秒>-<英数7桁>" を生成する。
// 時刻でソートでき、人にも読める。一意性はDBのuniqueIndexで担保し、
// 衝突したら呼び出し側が生成し直す。
func NewOrderNumber() string {
	buf := make([]byte, 7)
	if _, err := rand.Read(buf); err != nil {
		//crypto/randが読めない環境はまず無いが、時刻だけで組み立てて返す
		return fmt.Sprintf("ORD-%d-%07d", time.Now().UnixMilli(), time.Now().Nanosecond()%10000000)
	}
	for i, b := range buf {
		buf[i] = orderNumberSuffixChars[int(b)%len(orderNumberSuffixChars)]
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), string(buf))
}
