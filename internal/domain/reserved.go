package domain

import "strings"

// DefaultCollectionName — зарезервированное имя корзины по умолчанию.
// Создаётся при регистрации и скрывается из чужих выдач.
const DefaultCollectionName = "Unsorted"

// DefaultCollectionID — фиксированный идентификатор корзины по умолчанию
// в пространстве имён владельца: гарантирует не более одной на пользователя.
const DefaultCollectionID = "unsorted"

// IsReservedName сообщает, совпадает ли значение с зарезервированным именем
// без учёта регистра и краевых пробелов.
func IsReservedName(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), DefaultCollectionName)
}

// ContainsReservedName сообщает, содержит ли имя зарезервированное как подстроку.
// Используется фильтрами выдачи: чужие корзины по умолчанию не показываются.
func ContainsReservedName(name string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(DefaultCollectionName))
}

// HiddenFromViewer сообщает, нужно ли скрыть коллекцию от данного зрителя.
// Собственные коллекции видны всегда.
func HiddenFromViewer(c Collection, viewerID string) bool {
	if c.OwnerID == viewerID {
		return false
	}
	return ContainsReservedName(c.Name)
}
