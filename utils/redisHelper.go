package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store instance keyed Type:$userId, obj should be a pointer
func StoreRedis[T any](obj any, userId string) error {
	key := GetTypeName[T]() + ":" + userId
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](userId string) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + userId
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// remove an instance, Type:$userId
func RemoveRedisItem[T any](userId string) error {
	key := GetTypeName[T]() + ":" + userId
	return config.RemoveRedisKey(key)
}

func RedisKeyFor[T any](parts ...any) string {
	key := GetTypeName[T]()
	for _, p := range parts {
		key += ":" + fmt.Sprint(p)
	}
	return key
}
