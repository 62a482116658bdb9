package repository

import (
	"time"
)

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	Get(key string) (string, error)
	Delete(key string) error
	// SetNX устанавливает значение, только если ключ свободен
	// (используется для атомарного резервирования PIN-кодов)
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	// SAdd добавляет элементы во множество (используется для учета
	// активных сессий хоста)
	SAdd(key string, members ...interface{}) error
	// SRem удаляет элементы из множества
	SRem(key string, members ...interface{}) error
	// SMembers возвращает все элементы множества
	SMembers(key string) ([]string, error)
}
