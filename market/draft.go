package market

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// 價格與圖片限制
var (
	MinPrice = decimal.RequireFromString("0.01")
	MaxPrice = decimal.NewFromInt(99999)
)

const MaxImageSize int64 = 5 << 20

// maxPublisherLength 與 Draft.Publisher 的 max 標籤一致
const maxPublisherLength = 20

// maxSanitizePasses 之內沒有收斂的輸入是刻意多層編碼的標記
const maxSanitizePasses = 8

var (
	plainTextPolicy = bluemonday.StrictPolicy()
	angleBrackets   = strings.NewReplacer("<", "", ">", "")
)

// imageExtensions 是允許上傳的圖片類型及其副檔名
var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// Draft 是待刊登的商品內容
type Draft struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price" validate:"-"`
	Category    string          `json:"category" validate:"required"`
	Publisher   string          `json:"publisher" validate:"required,max=20"`
	Contact     string          `json:"contact" validate:"required,max=50"`
	Image       *Image          `json:"-" validate:"-"`
}

// Image 是隨商品上傳的圖片；Size 為 0 時以 Data 的長度計算
type Image struct {
	Name string
	Size int64
	Data []byte
}

type preparedImage struct {
	contentType string
	ext         string
	data        []byte
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 錯誤訊息使用 json 欄位名稱
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// normalized 去除前後空白並把描述轉成純文字；已登入者未填暱稱時以 email 帳號代替
func (d Draft) normalized(identity Identity) Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(plainText(d.Description))
	d.Category = strings.TrimSpace(d.Category)
	d.Publisher = strings.TrimSpace(d.Publisher)
	d.Contact = strings.TrimSpace(d.Contact)
	if d.Publisher == "" && identity.IsAuthenticated() {
		publisher := strings.TrimSpace(identity.Nickname)
		if publisher == "" {
			publisher, _, _ = strings.Cut(identity.Email, "@")
		}
		d.Publisher = truncateRunes(publisher, maxPublisherLength)
	}
	return d
}

// plainText 移除 HTML 標記並還原字元實體。
// 還原後可能組出新的標記，所以重複到結果不再改變。
func plainText(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(plainTextPolicy.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	return angleBrackets.Replace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// validateDraft 收集所有欄位錯誤，不會在第一個錯誤就停止
func validateDraft(d Draft) []FieldError {
	var fields []FieldError
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []FieldError{{Field: "draft", Message: err.Error()}}
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	if msg := checkPrice(d.Price); msg != "" {
		fields = append(fields, FieldError{Field: "price", Message: msg})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("failed on %s", fe.Tag())
}

func checkPrice(price decimal.Decimal) string {
	if price.LessThan(MinPrice) || price.GreaterThan(MaxPrice) {
		return fmt.Sprintf("must be between %s and %s", MinPrice.StringFixed(2), MaxPrice.String())
	}
	if !price.Equal(price.Truncate(2)) {
		return "must have at most two decimal places"
	}
	return ""
}

// prepareImage 以內容判斷圖片類型，只接受 JPEG 與 PNG
func prepareImage(img *Image) (*preparedImage, *FieldError) {
	size := img.Size
	if size == 0 {
		size = int64(len(img.Data))
	}
	if size > MaxImageSize || int64(len(img.Data)) > MaxImageSize {
		return nil, &FieldError{Field: "image", Message: "must be at most 5 MB"}
	}
	if len(img.Data) == 0 {
		return nil, &FieldError{Field: "image", Message: "is empty"}
	}
	mtype := mimetype.Detect(img.Data)
	for contentType, ext := range imageExtensions {
		if mtype.Is(contentType) {
			return &preparedImage{contentType: contentType, ext: ext, data: img.Data}, nil
		}
	}
	return nil, &FieldError{Field: "image", Message: fmt.Sprintf("must be a JPEG or PNG image, got %s", mtype.String())}
}
