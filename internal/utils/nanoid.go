package utils

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func GenerateNanoID() (string, error) {
	return gonanoid.New()
}

// ObjectName строит уникальное имя объекта в хранилище: prefix/<nanoid>.ext
func ObjectName(prefix, ext string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	ext = strings.TrimPrefix(ext, ".")
	name := strings.TrimSuffix(prefix, "/") + "/" + id
	if ext != "" {
		name += "." + ext
	}
	return name, nil
}
