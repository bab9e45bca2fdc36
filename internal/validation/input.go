package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinNameLength            = 2
	MaxNameLength            = 100
	MinGiftTitleLength       = 3
	MaxGiftTitleLength       = 200
	MinGiftDescriptionLength = 10
	MaxGiftDescriptionLength = 5000
	MaxCategoryLength        = 50
	MinMessageLength         = 1
	MaxMessageLength         = 5000
	MaxReasonCodeLength      = 50
	MaxDisputeTextLength     = 2000
	MaxPriceCents            = 10000000 // 100 000 в основной валюте
	MaxParcelWeightKg        = 50.0
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateName проверяет отображаемое имя пользователя.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("имя обязательно")
	}

	name = strings.TrimSpace(name)

	if err := ValidateLength("имя", name, MinNameLength, MaxNameLength); err != nil {
		return err
	}

	nameRegex := regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s\-_.,!?()]+$`)
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("имя содержит недопустимые символы")
	}

	return nil
}

// ValidateGiftTitle проверяет название подарка.
func ValidateGiftTitle(title string) error {
	if title == "" {
		return fmt.Errorf("название подарка обязательно")
	}

	title = strings.TrimSpace(title)

	if err := ValidateLength("название подарка", title, MinGiftTitleLength, MaxGiftTitleLength); err != nil {
		return err
	}

	return nil
}

// ValidateGiftDescription проверяет описание подарка.
func ValidateGiftDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание подарка обязательно")
	}

	description = strings.TrimSpace(description)

	if err := ValidateLength("описание подарка", description, MinGiftDescriptionLength, MaxGiftDescriptionLength); err != nil {
		return err
	}

	return nil
}

// ValidateCategory проверяет категорию подарка.
func ValidateCategory(category *string) error {
	if category != nil && *category != "" {
		cat := strings.TrimSpace(*category)
		if err := ValidateLength("категория", cat, 0, MaxCategoryLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePriceCents проверяет цену подарка в центах.
func ValidatePriceCents(priceCents int64) error {
	if priceCents <= 0 {
		return fmt.Errorf("цена подарка должна быть положительной")
	}
	if priceCents > MaxPriceCents {
		return fmt.Errorf("цена подарка не может превышать %d центов", MaxPriceCents)
	}
	return nil
}

// ValidateParcelWeight проверяет вес посылки в килограммах.
func ValidateParcelWeight(weightKg float64) error {
	if weightKg <= 0 {
		return fmt.Errorf("вес посылки должен быть положительным")
	}
	if weightKg > MaxParcelWeightKg {
		return fmt.Errorf("вес посылки не может превышать %.0f кг", MaxParcelWeightKg)
	}
	return nil
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}

	content = strings.TrimSpace(content)

	if err := ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength); err != nil {
		return err
	}

	return nil
}

// ValidateReasonCode проверяет код причины спора.
func ValidateReasonCode(reasonCode string) error {
	if strings.TrimSpace(reasonCode) == "" {
		return fmt.Errorf("причина спора обязательна")
	}

	if err := ValidateLength("причина спора", reasonCode, 1, MaxReasonCodeLength); err != nil {
		return err
	}

	return nil
}

// ValidateDisputeText проверяет описание спора или комментарий резолюции.
func ValidateDisputeText(fieldName string, text *string) error {
	if text != nil && *text != "" {
		t := strings.TrimSpace(*text)
		if err := ValidateLength(fieldName, t, 0, MaxDisputeTextLength); err != nil {
			return err
		}
	}
	return nil
}
