package security

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm/schema"
)

var (
	sealerMu sync.RWMutex
	sealer   = &Sealer{}
)

func init() {
	schema.RegisterSerializer("secret", SecretSerializer{})
}

// SetSealer 启动时注入全局密钥，gorm 的 secret 序列化器使用
func SetSealer(s *Sealer) {
	sealerMu.Lock()
	defer sealerMu.Unlock()
	if s == nil {
		s = &Sealer{}
	}
	sealer = s
}

func currentSealer() *Sealer {
	sealerMu.RLock()
	defer sealerMu.RUnlock()
	return sealer
}

// SecretSerializer 字段级加密: gorm:"serializer:secret"
// 仅支持 string 字段
type SecretSerializer struct{}

func (SecretSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue interface{}) error {
	var raw string
	switch v := dbValue.(type) {
	case nil:
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("secret serializer: unsupported db value %T", dbValue)
	}

	plain, err := currentSealer().Open(raw)
	if err != nil {
		return fmt.Errorf("open %s: %w", field.Name, err)
	}
	field.ReflectValueOf(ctx, dst).SetString(plain)
	return nil
}

func (SecretSerializer) Value(_ context.Context, field *schema.Field, _ reflect.Value, fieldValue interface{}) (interface{}, error) {
	s, ok := fieldValue.(string)
	if !ok {
		return nil, fmt.Errorf("secret serializer: field %s must be a string", field.Name)
	}
	return currentSealer().Seal(s)
}
